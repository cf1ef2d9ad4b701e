// Package ci runs the pipelines declared under workspace.ci.pipelines and
// keeps the result of the latest run of each pipeline as JSON under
// .gitgrip/ci-results/<pipeline>.json.
//
// Steps run sequentially. A failing step stops the pipeline unless it sets
// continue_on_error; either way a run with any failed step is reported as
// failed.
package ci
