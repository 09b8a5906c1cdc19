// Package services defines shared utilities consumed by the pipeline
// components and the format bridge.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures with
//     the component and operation that produced them.
//   - Failure-kind classification so the tracker can decide whether a
//     conversion failure waits for a corrected file or may retry on its own.
//   - Context helpers that stamp correlation IDs and work-unit base names
//     for logging and tracing.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
