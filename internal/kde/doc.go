// Package kde owns the numerical core of home-range estimation.
//
// Responsibilities: bandwidth selection (reference and least-squares
// cross-validation), kernel density surface construction over a regular
// grid, and extraction of probability-mass contours as polygons.
// Key types: Observations, Bandwidth, Grid, UD, Contour.
//
// Dependency rule: kde is pure computation. It performs no I/O beyond the
// optional log streams configured with SetLogWriters, and it never falls
// back from one bandwidth method to another on its own.
package kde
