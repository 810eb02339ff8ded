/*
Package ports defines the driven ports (interfaces) of the trio service.

These interfaces decouple the render pipeline from the way it is executed and from
where transient data lives, so the same service runs with an in-process worker or a
worker subprocess, and with memory or redis upload storage.

# Key Interfaces

  - Invoker: runs one trio through a single-use worker and returns its RenderResult.
  - UploadStore: keeps uploaded images until the generation step fetches them.
  - SubstanceGenerator: turns an uploaded image into substance text.
*/
package ports
