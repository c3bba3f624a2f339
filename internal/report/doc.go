// Package report renders estimator results for people and GIS tools:
// GeoJSON polygons, an area table in CSV, PNG plots of each UD and LSCV
// score curve, and an HTML summary chart.
package report
