// Package streaming is an in-memory streaming engine for the transport graph.
//
// A Tiler cuts source ways into cells of one zoom level and joins the pieces across cell boundaries with
// pairs of link edges. An Engine keeps a resident subset of those cells, serves their payloads as a
// network.TileSource and reports every residency change to a network.CellListener.
package streaming
