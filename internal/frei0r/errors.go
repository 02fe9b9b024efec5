// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package frei0r

// Error codes attached (via oops) to failures crossing the plugin boundary.
// Every one of them aborts a plugin switch or a tick; none of them is fatal
// to the host process.
const (
	CodeLoad            = "PLUGIN_LOAD_FAILED"
	CodeSymbol          = "PLUGIN_SYMBOL_MISSING"
	CodeInit            = "PLUGIN_INIT_FAILED"
	CodeInvalidMetadata = "PLUGIN_INVALID_METADATA"
	CodeInstance        = "PLUGIN_INSTANCE_FAILED"
	CodeFault           = "PLUGIN_FAULT"
	CodeParamIndex      = "PARAM_INDEX_OUT_OF_RANGE"
	CodeParamKind       = "PARAM_KIND_MISMATCH"
	CodeParamParse      = "PARAM_PARSE_FAILED"
	CodeParamUnknown    = "PARAM_UNKNOWN"
)
