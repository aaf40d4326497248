// Package tflite runs models through the TensorFlow Lite C API. It needs
// libtensorflowlite_c at link time, so the interpreter is only compiled in
// with -tags tflite; without the tag the kind is registered but refuses to
// load models.
package tflite

const Kind = "tflite"

// Threads is the interpreter thread count used by engines built through the
// registry. Zero leaves the library default.
var Threads int
