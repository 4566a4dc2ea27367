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

// Package hound is a local-first hybrid search engine for personal
// documents.
//
// Hound watches registered directories, extracts text from common file
// formats (plain text, PDF, DOCX, XLSX, PPTX), chunks and embeds it, and
// serves keyword, semantic and hybrid search over an HTTP JSON API.
//
// # Quick Start
//
// Install Hound:
//
//	go install github.com/kadirpekel/hound/cmd/hound@latest
//
// Create a configuration:
//
//	embedder:
//	  type: "ollama"
//	  model: "nomic-embed-text"
//	storage:
//	  data_dir: "./data"
//	auth:
//	  admin_key: "${HOUND_ADMIN_KEY}"
//
// Start the server:
//
//	hound serve --config hound.yaml
//
// Register a directory and search:
//
//	curl -X POST "localhost:8000/api/v1/directories/add?path=$HOME/Documents" \
//	  -H "Authorization: Bearer $HOUND_ADMIN_KEY"
//	curl -X POST localhost:8000/api/v1/searcher/search \
//	  -H "Authorization: Bearer $HOUND_ADMIN_KEY" \
//	  -d '{"query":"quarterly report","search_type":"hybrid"}'
//
// # Architecture
//
//	HTTP API → Scheduler → Walk → Extract → Chunk → Embed
//	                                  ↓
//	             Chunk Store (chromem/qdrant) + Lexical Index + Ledger
//
// Indexing is incremental: unchanged files are detected by size, mtime
// and content hash and skipped. Search fuses TF-IDF keyword scores with
// vector similarity.
package hound
