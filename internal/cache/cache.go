// Copyright 2024 SnmpFS Authors
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

// Package cache remembers how front-end paths resolved, so that a path
// handed back by the NFS layer does not have to be probed again.
//
// Only handles are kept. Attributes and values are always read from the
// agent.
package cache

import "os"

// Disabled turns every cache into a permanent miss.
// Set via SNMPFS_CACHE=0, useful to check that nothing depends on it.
var Disabled = os.Getenv("SNMPFS_CACHE") == "0"

// Invalidator is implemented by all caches that support full invalidation.
type Invalidator interface {
	// Invalidate clears all entries from the cache.
	Invalidate()
}
