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

package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrDimensionMismatch indicates a vector whose length differs from the store's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyEmbedding indicates a chunk without an embedding.
	ErrEmptyEmbedding = errors.New("chunk has no embedding")

	// ErrCorruptRecord indicates stored bytes that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrUnsupportedVersion indicates a record written by an unknown codec version.
	ErrUnsupportedVersion = errors.New("unsupported record version")
)
