// SPDX-License-Identifier: MPL-2.0

// Package envmgr materializes isolated execution contexts for named
// environments: a deterministic per-name directory under the work root, an
// isolated dependency root, and the derived built-in variables. Reuse
// versus recreation is decided by an on-disk state record holding a
// content fingerprint of the environment's dependency source set.
package envmgr
