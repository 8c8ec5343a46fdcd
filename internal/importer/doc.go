// Package importer loads product catalogs and store locations from JSON or
// YAML datasets.
//
// Records are written in source order, in fixed-size batches, each batch in
// its own transaction. A failing batch is rolled back and stops the import;
// batches committed before it stay committed. The catalog import first
// deletes all products and flavors and restarts their identifiers at 1.
// Locations are upserted by id instead.
package importer
