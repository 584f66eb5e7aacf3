// Package cli implements the Cobra command-line interface for bcf-monitor:
// single-shot checks, an in-process cron scheduler, snapshot expiry cleanup,
// and config file bootstrapping. Flags override the YAML configuration.
package cli
