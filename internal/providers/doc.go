// Package providers implements the per-cloud billing fetchers.
//
// Each fetcher satisfies collector.Fetcher and returns raw cost rows
// for its provider:
//   - AWSFetcher: AWS Cost Explorer, daily granularity, grouped by
//     service and linked account, paginated
//   - AzureFetcher: Azure Cost Management query API per subscription,
//     with exponential-backoff retries
//   - GCPFetcher: a billing-export HTTP endpoint serving normalized
//     JSON rows, optionally authenticated with a service account
//   - SampleFetcher: JSON files on disk, standing in for any provider
//     when no credentials are available
//
// Build assembles the fetcher set from configuration; a configured
// sample_path always wins over live credentials.
package providers
