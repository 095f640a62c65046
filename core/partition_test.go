package core

import (
	"testing"
)

func TestNewPartitionSet(t *testing.T) {
	tests := []struct {
		name       string
		partitions []Partition
		wantErr    bool
	}{
		{"public only", []Partition{PartitionPublic}, false},
		{"public plus one user", []Partition{PartitionPublic, UserPartition("alice")}, false},
		{"user only", []Partition{UserPartition("alice")}, false},
		{"empty", nil, true},
		{"two users", []Partition{UserPartition("alice"), UserPartition("bob")}, true},
		{"duplicate", []Partition{PartitionPublic, PartitionPublic}, true},
		{"malformed", []Partition{Partition("user:")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPartitionSet(tt.partitions...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPartitionSet(%v) error = %v, wantErr %v", tt.partitions, err, tt.wantErr)
			}
		})
	}
}

func TestPartitionSet_Contains(t *testing.T) {
	set, err := ForUser("alice", true)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}

	if !set.Contains(PartitionPublic) {
		t.Error("expected public partition to be visible")
	}
	if !set.Contains(UserPartition("alice")) {
		t.Error("expected alice's partition to be visible")
	}
	if set.Contains(UserPartition("bob")) {
		t.Error("bob's partition must never be visible to alice")
	}
}

func TestPartitionSet_Immutable(t *testing.T) {
	set := PublicOnly()

	parts := set.Partitions()
	parts[0] = UserPartition("mallory")

	if !set.Contains(PartitionPublic) || set.Contains(UserPartition("mallory")) {
		t.Error("mutating the returned slice must not affect the set")
	}
}

func TestPartition_Validate(t *testing.T) {
	if err := PartitionPublic.Validate(); err != nil {
		t.Errorf("public partition should validate: %v", err)
	}
	if err := UserPartition("u-123").Validate(); err != nil {
		t.Errorf("user partition should validate: %v", err)
	}
	if err := Partition("team:legal").Validate(); err == nil {
		t.Error("unknown partition scheme should be rejected")
	}
}
