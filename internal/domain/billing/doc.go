// Package billing turns closed usage windows into priced statements,
// persisted bills and the payments settling them.
//
// Calculate is a pure function: given the same plan and aggregates it
// always produces the same statement. Bills freeze a statement under the
// key (tenant, start, end) and only change on explicit regeneration.
package billing
