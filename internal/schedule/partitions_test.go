package schedule

import (
	"testing"
	"time"
)

func dailyPartitions() *TimeWindowPartitions {
	return &TimeWindowPartitions{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Cron:  "0 0 * * *",
	}
}

func hourlyPartitions() *TimeWindowPartitions {
	return &TimeWindowPartitions{
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Cron:   "0 * * * *",
		Format: "2006-01-02-15",
	}
}

func TestPartitionKeys(t *testing.T) {
	now := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)
	keys, err := dailyPartitions().Keys(now)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys %v, want %v", len(keys), keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestPartitionLastKey(t *testing.T) {
	now := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)
	key, err := dailyPartitions().LastKey(now)
	if err != nil {
		t.Fatal(err)
	}
	if key != "2024-01-03" {
		t.Errorf("LastKey = %q, want 2024-01-03", key)
	}

	// Before the first window closes there is no partition.
	key, err = dailyPartitions().LastKey(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if key != "" {
		t.Errorf("LastKey before first close = %q, want empty", key)
	}
}

func TestPartitionWindowFor(t *testing.T) {
	start, end, err := dailyPartitions().WindowFor("2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("window start = %v", start)
	}
	if !end.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("window end = %v", end)
	}
}

func TestPartitionWindowForRejectsBadKeys(t *testing.T) {
	p := dailyPartitions()
	if _, _, err := p.WindowFor("not-a-date"); err == nil {
		t.Error("expected error for malformed key")
	}
	if _, _, err := p.WindowFor("2023-12-31"); err == nil {
		t.Error("expected error for key before start")
	}
}

func TestMapPartitionKeysDailyToHourly(t *testing.T) {
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	keys, err := MapPartitionKeys("2024-01-02", dailyPartitions(), hourlyPartitions(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 24 {
		t.Fatalf("got %d keys, want 24", len(keys))
	}
	if keys[0] != "2024-01-02-00" || keys[23] != "2024-01-02-23" {
		t.Errorf("key range = %q .. %q", keys[0], keys[23])
	}
}

func TestMapPartitionKeysHourlyToDaily(t *testing.T) {
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	keys, err := MapPartitionKeys("2024-01-02-05", hourlyPartitions(), dailyPartitions(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "2024-01-02" {
		t.Errorf("keys = %v, want [2024-01-02]", keys)
	}
}

func TestPartitionValidate(t *testing.T) {
	bad := &TimeWindowPartitions{Start: time.Now(), Cron: "bogus"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid cron")
	}
	badTZ := &TimeWindowPartitions{Start: time.Now(), Cron: "0 0 * * *", Timezone: "Nope/Nope"}
	if err := badTZ.Validate(); err == nil {
		t.Error("expected error for invalid timezone")
	}
	if err := dailyPartitions().Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
