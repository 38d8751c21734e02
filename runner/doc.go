// Package runner is the orchestrator side of the subprocess message channel.
//
// A Client launches a worker executable in its own process group, hands it
// the run context through DAGSTER_PIPES_CONTEXT and DAGSTER_PIPES_MESSAGES,
// waits for it to exit and folds the newline-delimited report it wrote into a
// Result. Any failure comes back as one of LaunchError, WorkerFailedError,
// ProtocolDecodeError or TimeoutError.
package runner
