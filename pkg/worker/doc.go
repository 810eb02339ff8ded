/*
Package worker runs one trio through the diagram pipeline in an isolated,
single-use environment.

A Worker owns a fresh dom.Document, executes compile, optimize and serialize
strictly in that order, and hands back exactly one domain.RenderResult. It refuses a
second Render call, so no state can leak between requests.

Two entrypoints share the same pipeline:

  - InProcess is a ports.Invoker that builds a new Worker for every call.
  - Main is the body of the "trio worker <dir>" subprocess. It reads the three
    programs from a directory, writes SVG to stdout and a JSON diagnostic to stderr,
    and reports the outcome through its exit code (see the Exit constants).
*/
package worker
