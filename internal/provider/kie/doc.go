// Package kie implements the asynchronous provider boundary against a
// KIE-style create-job/poll-until-done API. The client submits a job,
// polls its state with a cancellable sleep between checks, and
// materializes URL results into inline images before handing them up.
package kie
