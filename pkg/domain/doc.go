/*
Package domain contains the core models shared by every layer of the trio service.

It defines the request shape (Trio), the single artifact that crosses the worker
boundary (RenderResult), and the error taxonomy used to report failures. This package
is kept pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Trio: the domain, substance and style programs plus the variation seed.
  - RenderResult: either SVG text or a typed Error, never both.
  - Error: a failure with a machine-distinguishable Kind and an optional Diagnostic.
  - UploadRef: a reference to a stored image consumed by substance generation.
*/
package domain
