// Copyright 2025 Blink Labs Software
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

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNDefaults(t *testing.T) {
	assert.Equal(
		t,
		"host=localhost user=postgres password= dbname=postgres port=5432 sslmode=disable TimeZone=UTC",
		Config{}.DSN(),
	)
}

func TestDSNFields(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     6543,
		User:     "numbat",
		Password: "secret",
		Database: "chain",
		SslMode:  "require",
		TimeZone: "Europe/Berlin",
	}
	assert.Equal(
		t,
		"host=db.internal user=numbat password=secret dbname=chain port=6543 sslmode=require TimeZone=Europe/Berlin",
		cfg.DSN(),
	)
}

func TestDSNOverride(t *testing.T) {
	cfg := Config{
		Dsn:  "  postgres://u:p@h:1/d  ",
		Host: "ignored",
	}
	assert.Equal(t, "postgres://u:p@h:1/d", cfg.DSN())
}
