/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"os"
	"testing"
)

const testconf = "testconfig"

func TestConfig(t *testing.T) {

	Config = nil

	os.WriteFile(testconf, []byte(`{
    "EnableReadTracing": true,
    "ParallelWorkers": 16
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Str(EnableReadTracing); res != "true" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Bool(EnableReadTracing); !res {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(ParallelWorkers); res != 16 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(DefaultBatchSize); fmt.Sprint(res) != fmt.Sprint(DefaultConfig[DefaultBatchSize]) {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Str(EnableReadTracing); res != "false" {
		t.Error("Unexpected result:", res)
		return
	}

	Config[TraceStreamPort] = "123"

	if res := TraceStreamAddress(); res != "localhost:123" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Str(KernelLogLevel); res != "info" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestConfigErrors(t *testing.T) {

	LoadDefaultConfig()

	Config[DefaultPartitions] = "foo"

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Parsing an invalid int should cause a panic")
			}
		}()

		Int(DefaultPartitions)
	}()

	Config[EnableCursorLeakCheck] = "maybe"

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Parsing an invalid bool should cause a panic")
			}
		}()

		Bool(EnableCursorLeakCheck)
	}()

	LoadDefaultConfig()
}
