// Package homerange runs the kde pipeline over a batch of individuals.
//
// Each individual is estimated independently: bandwidth, grid, UD,
// contour and area curve. Failures are recorded on that individual's
// Result and never abort the batch. Results keep input order.
//
// With SharedGrid every individual is evaluated on one common grid
// covering all of them, so UDs can be compared cell by cell.
package homerange
