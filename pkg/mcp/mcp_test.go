// Copyright 2025 Kadir Pekel
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

package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/search"
	"github.com/kadirpekel/hound/pkg/storage"
	"github.com/kadirpekel/hound/pkg/vector"
)

func TestNew_RegistersTools(t *testing.T) {
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	reg, err := registry.New(db)
	require.NoError(t, err)

	store, err := vector.NewChromem(vector.ChromemOptions{
		PersistPath: t.TempDir(),
		Dimension:   8,
	})
	require.NoError(t, err)
	defer store.Close()

	searchCfg := config.SearchConfig{}
	searchCfg.SetDefaults()

	engine := search.New(search.Options{
		Config:  searchCfg,
		Lexical: index.NewInverted(),
		Store:   store,
		Ledger:  ledger.New(db),
	})

	var srv *Server
	require.NotPanics(t, func() {
		srv = New(engine, reg)
	})
	assert.NotNil(t, srv)
	assert.NotNil(t, srv.mcp)
}
