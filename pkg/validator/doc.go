/*
Package validator is the gate in front of the render pipeline.

It checks that a request carries the domain, substance and style programs as
non-empty strings and fills in the default variation, so a malformed trio is
rejected with an actionable field error instead of failing deep inside a worker.
*/
package validator
