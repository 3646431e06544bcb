// Package worker runs the periodic background cycle: collect billing
// data, refresh FX rates, scan for anomalies, and notify.
package worker
