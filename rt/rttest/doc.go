// Package rttest provides a scripted in-process transcription server for
// exercising the rt client against controlled protocol behavior: delayed
// or dropped acknowledgments, injected errors, and scripted transcript
// streams. It is intended for tests and for the local mock server binary.
package rttest
