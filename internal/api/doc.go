// Package api serves the HTTP surface of the alignment server: the embedded
// upload page, task submission and polling, artifact download, the model
// catalog, and health and metrics endpoints.
//
// Handlers validate requests before any task exists, so a 400 never leaves a
// task or a staged file behind. Accepted submissions are staged under the
// upload directory and handed to the workflow queue; everything else about a
// task is read back from the shared task store. JSON errors always use the
// {"error": message} shape.
package api
