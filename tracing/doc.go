// Package tracing wraps OpenTelemetry so that the scheduler, the memory
// manager and the orchestrator can emit spans without importing the SDK.
// Spans are no-ops until Init or InitWithExporter installs a provider.
package tracing
