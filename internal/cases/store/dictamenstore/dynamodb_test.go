package dictamenstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "juntas/pkg/domain"
)

// fakeDynamo applies the store's update expression semantics: payload and
// updated_at are overwritten, id and created_at are kept once set.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["case_id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(in.Key)
	item, ok := f.items[k]
	if !ok {
		item = map[string]types.AttributeValue{
			"case_id":    in.Key["case_id"],
			"id":         in.ExpressionAttributeValues[":id"],
			"created_at": in.ExpressionAttributeValues[":now"],
		}
		f.items[k] = item
	}
	item["payload"] = in.ExpressionAttributeValues[":payload"]
	item["updated_at"] = in.ExpressionAttributeValues[":now"]
	return &dynamodb.UpdateItemOutput{Attributes: item}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamo_UpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewDynamo(newFakeDynamo(), "dictamenes")
	caseID := id.CaseID(uuid.New())
	t0 := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	first, err := store.Upsert(ctx, caseID, json.RawMessage(`{"v":1}`), t0)
	require.NoError(t, err)
	second, err := store.Upsert(ctx, caseID, json.RawMessage(`{"v":2}`), t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, caseID, second.CaseID)
	assert.True(t, t0.Equal(second.CreatedAt))
	assert.True(t, t0.Add(time.Hour).Equal(second.UpdatedAt))

	got, err := store.Get(ctx, caseID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))
}

func TestDynamo_GetAbsentAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewDynamo(newFakeDynamo(), "dictamenes")
	caseID := id.CaseID(uuid.New())

	got, err := store.Get(ctx, caseID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.Upsert(ctx, caseID, json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)
	require.NoError(t, store.DeleteForCase(ctx, caseID))

	got, err = store.Get(ctx, caseID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDynamo_GetRejectsCorruptTimestamps(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := NewDynamo(fake, "dictamenes")
	caseID := id.CaseID(uuid.New())

	_, err := store.Upsert(ctx, caseID, json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)

	for _, attr := range []string{"created_at", "updated_at"} {
		t.Run(attr, func(t *testing.T) {
			item := fake.items[caseID.String()]
			saved := item[attr]
			item[attr] = &types.AttributeValueMemberS{Value: "yesterday"}
			defer func() { item[attr] = saved }()

			got, err := store.Get(ctx, caseID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decode dictamen "+attr)
			assert.Nil(t, got)
		})
	}
}
