// Package logstore implements the log-query client: a lifecycle-managed
// wrapper over an InfluxDB v2 query API used by smoke-test steps to assert on
// measurements the system under test has written.
package logstore
