package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

const tablesPartition = "taskboard"

// TablesBackend keeps the document in a single Azure Table entity.
type TablesBackend struct {
	service *aztables.ServiceClient
	table   *aztables.Client
	name    string
}

// NewTablesBackend connects to Azure Table storage with the retry profile
// used across the service fleet.
func NewTablesBackend(connStr, table string) (*TablesBackend, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TablesBackend{service: svc, table: svc.NewClient(table), name: table}, nil
}

// EnsureTable creates the backing table when it does not exist yet.
func (t *TablesBackend) EnsureTable(ctx context.Context) error {
	_, err := t.service.CreateTable(ctx, t.name, nil)
	if err != nil && isStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

type documentEntity struct {
	aztables.Entity
	Payload string `json:"Payload"`
}

func (t *TablesBackend) Read(ctx context.Context) ([]byte, bool, error) {
	resp, err := t.table.GetEntity(ctx, tablesPartition, DocumentKey, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var ent documentEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, false, err
	}
	return []byte(ent.Payload), true, nil
}

func (t *TablesBackend) Write(ctx context.Context, data []byte) error {
	ent := documentEntity{
		Entity:  aztables.Entity{PartitionKey: tablesPartition, RowKey: DocumentKey},
		Payload: string(data),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (t *TablesBackend) Delete(ctx context.Context) error {
	_, err := t.table.DeleteEntity(ctx, tablesPartition, DocumentKey, nil)
	if err != nil && isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
