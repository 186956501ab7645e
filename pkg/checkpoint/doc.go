// Package checkpoint records which products a harvest run has finished so
// an interrupted run can be resumed with --resume.
//
// A run is identified by a key derived from its mode, output directory and
// inputs (RunKey). The checkpoint lives at
// $XDG_DATA_HOME/cpcscraper/checkpoints/<run-key>.checkpoint.json, is
// rewritten atomically after every finished product, and is deleted when a
// run ends without failures.
package checkpoint
