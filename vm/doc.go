// Package vm implements the Nasal virtual machine.
//
// This package contains:
//   - NaN-boxed value representation
//   - Block pools for the seven reference kinds
//   - Mark/sweep garbage collection
//   - Bytecode builder, reader and disassembler
//   - The interpreter loop, sub-contexts and continuation
//   - The runtime lock shared by all contexts of a Runtime
//
// Scripts are compiled by package compiler; package lib supplies the
// native functions scripts normally expect.
package vm
