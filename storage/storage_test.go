package storage

import (
	"context"
	"reflect"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sprintboard/domain"
)

func redisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "board"), mr
}

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Tasks: map[domain.Stage][]domain.Task{
			domain.StageBacklog: {{
				ID:          1,
				Title:       "Fix bug",
				Description: "No description",
				Priority:    domain.PriorityMedium,
				Label:       domain.LabelAccounts,
				Points:      3,
				Stage:       domain.StageBacklog,
				Sprint:      "Sprint 3",
			}},
			domain.StageDone: {{
				ID:          2,
				Title:       "Ship it",
				Description: "released",
				Priority:    domain.PriorityHigh,
				Label:       domain.LabelBilling,
				Points:      5,
				Stage:       domain.StageDone,
			}},
		},
		Members: []domain.Member{{
			ID:       "m1",
			Name:     "Jane Smith",
			Initials: "JS",
			Email:    "jane.smith@team.local",
			Color:    "#2563eb",
		}},
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := redisStore(t)
	ctx := context.Background()

	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected stored snapshot")
	}
	if !reflect.DeepEqual(got.Tasks[domain.StageBacklog], want.Tasks[domain.StageBacklog]) {
		t.Fatalf("backlog differs:\nwant %+v\ngot  %+v", want.Tasks[domain.StageBacklog], got.Tasks[domain.StageBacklog])
	}
	if !reflect.DeepEqual(got.Tasks[domain.StageDone], want.Tasks[domain.StageDone]) {
		t.Fatalf("done differs:\nwant %+v\ngot  %+v", want.Tasks[domain.StageDone], got.Tasks[domain.StageDone])
	}
	if !reflect.DeepEqual(got.Members, want.Members) {
		t.Fatalf("members differ:\nwant %+v\ngot  %+v", want.Members, got.Members)
	}
}

func TestRedisStoreLoadEmptySlot(t *testing.T) {
	store, _ := redisStore(t)

	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("empty slot must report ok=false")
	}
}

func TestRedisStoreLoadPartialSlot(t *testing.T) {
	store, mr := redisStore(t)
	mr.Set("board:members", `[{"id":"m1","name":"Jane Smith","initials":"JS","color":"#2563eb"}]`)

	snap, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("partial slot must still load")
	}
	if len(snap.Members) != 1 || snap.Members[0].Initials != "JS" {
		t.Fatalf("unexpected members: %+v", snap.Members)
	}
	for stage, bucket := range snap.Tasks {
		if len(bucket) != 0 {
			t.Fatalf("missing tasks key must behave as empty, stage %s has %d", stage, len(bucket))
		}
	}
}

func TestRedisStoreLoadMalformedDocument(t *testing.T) {
	store, mr := redisStore(t)
	mr.Set("board:tasks", "{not json")

	if _, _, err := store.Load(context.Background()); err == nil {
		t.Fatal("malformed document must surface an error for the empty-board fallback")
	}
}
