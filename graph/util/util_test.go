/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestKernelError(t *testing.T) {

	err := &KernelError{ErrCursorClosed, "node cursor"}

	if res := err.Error(); res != "KernelError: Cursor is closed (node cursor)" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := (&KernelError{ErrReading, ""}).Error(); res != "KernelError: Could not read graph information" {
		t.Error("Unexpected result:", res)
		return
	}

	if !errors.Is(err, ErrCursorClosed) || !IsUsageError(err) || IsStoreIOError(err) {
		t.Error("Unexpected classification")
		return
	}

	wrapped := fmt.Errorf("scan failed: %w", &KernelError{ErrReading, "disk"})

	if !IsStoreIOError(wrapped) || IsUsageError(wrapped) {
		t.Error("Unexpected classification")
		return
	}

	if res := ConsistencyMessage("node %v", 5); res != "Consistency defect: node 5" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTokenRegistry(t *testing.T) {
	tr := NewTokenRegistry()

	if _, err := tr.Labels.GetOrCreateID(""); !errors.Is(err, ErrInvalidTokenName) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := tr.Labels.GetOrCreateID("   "); !IsUsageError(err) {
		t.Error("Unexpected result:", err)
		return
	}

	l1, _ := tr.Labels.GetOrCreateID("Person")
	l2, _ := tr.Labels.GetOrCreateID("City")
	l3, _ := tr.Labels.GetOrCreateID("Person")

	if l1 != 0 || l2 != 1 || l3 != 0 {
		t.Error("Unexpected result:", l1, l2, l3)
		return
	}

	// Name spaces are independent

	if id, _ := tr.RelationshipTypes.GetOrCreateID("Person"); id != 0 {
		t.Error("Unexpected result:", id)
		return
	}

	if res := tr.Holder(PropertyKeyToken).ID("Person"); res != NoToken {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := tr.Holder(LabelToken).Name(1); res != "City" {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := tr.Labels.Name(5); !errors.Is(err, ErrUnknownToken) {
		t.Error("Unexpected result:", err)
		return
	}

	if res := tr.Labels.Size(); res != 2 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(LabelToken, ", ", RelationshipTypeToken, ", ", PropertyKeyToken); res != "label, relationship type, property key" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestTokenRegistryPersister(t *testing.T) {
	tr := NewTokenRegistry()
	var persisted []string

	tr.SetPersister(func(kind TokenKind, name string, id int) error {
		if name == "fail" {
			return errors.New("disk full")
		}
		persisted = append(persisted, fmt.Sprint(kind, ":", name, ":", id))
		return nil
	})

	tr.PropertyKeys.GetOrCreateID("name")
	tr.PropertyKeys.GetOrCreateID("name")

	if _, err := tr.PropertyKeys.GetOrCreateID("fail"); !IsStoreIOError(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if res := fmt.Sprint(persisted); res != "[property key:name:0]" {
		t.Error("Unexpected result:", res)
		return
	}

	if id, _ := tr.PropertyKeys.GetOrCreateID("age"); id != 1 {
		t.Error("Unexpected result:", id)
		return
	}

	// Restoring must happen in id order

	tr2 := NewTokenRegistry()

	if err := tr2.Labels.Restore("A", 0); err != nil {
		t.Error(err)
		return
	}

	if err := tr2.Labels.Restore("C", 2); !IsStoreIOError(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if id, _ := tr2.Labels.GetOrCreateID("B"); id != 1 {
		t.Error("Unexpected result:", id)
		return
	}
}

func TestTokenRegistryConcurrent(t *testing.T) {
	tr := NewTokenRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.Labels.GetOrCreateID(fmt.Sprint("L", j))
			}
		}()
	}

	wg.Wait()

	if res := tr.Labels.Size(); res != 50 {
		t.Error("Unexpected result:", res)
		return
	}

	for j := 0; j < 50; j++ {
		id := tr.Labels.ID(fmt.Sprint("L", j))
		if name, _ := tr.Labels.Name(id); name != fmt.Sprint("L", j) {
			t.Error("Unexpected result:", name)
			return
		}
	}
}
