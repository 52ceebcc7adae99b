// Package sheetid assigns stable, human-readable identifiers to the rows of a
// shared spreadsheet workbook.
//
// # Core Concepts
//
//  1. Identifier: a non-negative integer rendered as a fixed-width, zero-padded
//     suffix on a row's display name ("Acme" becomes "Acme_0013"). Identifiers
//     are unique across every section of the workbook.
//
//  2. Counter: the last-known maximum identifier, persisted in a reserved
//     section ("__GLOBAL__") of the workbook itself so that it survives
//     process restarts without an external database.
//
//  3. AllocationPolicy: decides which integer an unidentified row receives.
//     MonotonicAppend never reuses identifiers; LowestGapFill reclaims the
//     gaps left by deleted rows.
//
// # Usage
//
//	codec, _ := sheetid.NewIdentifierCodec(4)
//	t := sheetid.NewTransformer(sheetid.TransformerConfig{
//	    Codec:  codec,
//	    Policy: sheetid.MonotonicAppend{},
//	})
//	result, err := t.Apply(doc)
//	if err != nil {
//	    return err
//	}
//	if result.Changed {
//	    // encode and upload doc
//	}
//
// The Document interface hides the workbook format; see pkg/tabular/xlsx for
// the Excel implementation and MemoryDocument for an in-memory one.
package sheetid
