// Package naming derives the stable identity of a project: its storage key,
// its public hostname, the port bound to that hostname and the environment
// text handed to the deployed instance.
//
// Every function in this package is pure. The same inputs always produce the
// same outputs, which is what keeps ingress rules keyed by hostname valid
// across redeploys.
package naming
