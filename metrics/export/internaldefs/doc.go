// Package internaldefs holds the metric names, help strings and histogram
// bounds shared by the Prometheus and OTel exporters, so both publish
// identical series.
//
// Nothing here performs I/O, and no exporter package may be imported.
package internaldefs
