// Command lettercast turns podcast episodes into newsletter issues: it
// downloads episode audio, normalizes and segments it, drives a prompt
// sequence against a hosted generative model, and writes the assembled
// newsletter to disk.
package main
