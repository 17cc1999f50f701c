// Package form models the inputs of a rendered form page independently of
// any DOM. A page renders the same fields twice (wizard cards and the
// traditional form); snapshots merge both views deterministically and
// CopyValues keeps them aligned when the user switches views.
package form
