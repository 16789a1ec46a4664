/*
Package httpserver serves a small read-only API for inspecting feed sources.

It resolves configured sources on request and reports where each feed is
written and served from, without reading or writing any feed data. It is meant
for operators checking that a deployment's configuration and credentials
resolve the way they expect.

API Endpoints:

  - GET /api/sources: names of all configured sources
  - GET /api/sources/{name}: resolved absolute path, base URI and, for object
    stores, the credential strategy, encryption mode and compression flag
  - GET /livez, /readyz: liveness and readiness
  - GET /drain, /undrain: toggle readiness for load balancer rotation

Resolving an object-store source may issue one STS request when ambient
credentials are used, so /api/sources/{name} can take up to the identity
check timeout to answer.
*/
package httpserver
