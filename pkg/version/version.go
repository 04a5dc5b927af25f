// Copyright 2025 Signia Protocol

// Package version carries the compiler identity recorded in every manifest.
package version

// Compiler is the toolchain name recorded under toolchain.compiler.
const Compiler = "signia-compiler"

// Version is the compiler version. Part of the determinism contract: a
// change here changes every manifest hash.
const Version = "1.0.0"
