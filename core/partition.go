// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// Partition is an isolation boundary over indexed data: the shared public
// knowledge base or one user's private space.
type Partition string

// PartitionPublic is the shared knowledge base visible to every caller.
const PartitionPublic Partition = "public"

const userPartitionPrefix = "user:"

// UserPartition returns the private partition for a user.
func UserPartition(userID string) Partition {
	return Partition(userPartitionPrefix + userID)
}

// IsPublic reports whether p is the shared public partition.
func (p Partition) IsPublic() bool {
	return p == PartitionPublic
}

// Validate checks that p is either the public partition or a well-formed
// user partition.
func (p Partition) Validate() error {
	if p == PartitionPublic {
		return nil
	}
	if strings.HasPrefix(string(p), userPartitionPrefix) && len(p) > len(userPartitionPrefix) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPartition, string(p))
}

// PartitionSet is the precomputed set of partitions visible to a caller:
// optionally the public partition plus at most one user partition. It is
// built once from verified identity at the boundary and passed unchanged
// through every store call; stores never re-derive partition membership.
type PartitionSet struct {
	partitions []Partition
}

// NewPartitionSet builds a caller's visible partition set. At most one user
// partition may be present, and duplicates are rejected.
func NewPartitionSet(partitions ...Partition) (PartitionSet, error) {
	if len(partitions) == 0 {
		return PartitionSet{}, fmt.Errorf("%w: empty partition set", ErrInvalidPartition)
	}
	seen := make(map[Partition]bool, len(partitions))
	users := 0
	for _, p := range partitions {
		if err := p.Validate(); err != nil {
			return PartitionSet{}, err
		}
		if seen[p] {
			return PartitionSet{}, fmt.Errorf("%w: duplicate partition %q", ErrInvalidPartition, string(p))
		}
		seen[p] = true
		if !p.IsPublic() {
			users++
		}
	}
	if users > 1 {
		return PartitionSet{}, fmt.Errorf("%w: more than one user partition", ErrInvalidPartition)
	}
	set := PartitionSet{partitions: make([]Partition, len(partitions))}
	copy(set.partitions, partitions)
	return set, nil
}

// PublicOnly returns the partition set of an unauthenticated or
// public-scoped caller.
func PublicOnly() PartitionSet {
	set, _ := NewPartitionSet(PartitionPublic)
	return set
}

// ForUser returns the partition set of an authenticated user: their private
// partition plus, optionally, the public knowledge base.
func ForUser(userID string, includePublic bool) (PartitionSet, error) {
	if includePublic {
		return NewPartitionSet(PartitionPublic, UserPartition(userID))
	}
	return NewPartitionSet(UserPartition(userID))
}

// Contains reports whether p is visible to the caller.
func (s PartitionSet) Contains(p Partition) bool {
	for _, part := range s.partitions {
		if part == p {
			return true
		}
	}
	return false
}

// Partitions returns a copy of the visible partitions.
func (s PartitionSet) Partitions() []Partition {
	out := make([]Partition, len(s.partitions))
	copy(out, s.partitions)
	return out
}

// Empty reports whether the set was never initialized.
func (s PartitionSet) Empty() bool {
	return len(s.partitions) == 0
}
