// Package agartha provides Salt-style external authentication: credentials
// are verified against a relational user store (Postgres or MySQL), with
// LDAP bind/search authorization, schema-aware group resolution, and
// expansion of ldap(...) organizational-unit references in access-control
// lists.
//
// Enable it in the master config:
//
//	external_auth:
//	  agartha:
//	    paul:
//	      - test.*
//
// Directory behavior is driven by the auth.ldap.* options; database
// connection settings come from the returner.pgupsert.* (Postgres) or
// mysql.* (MySQL) options. All options are passed in per call as a flat
// mapping; this package keeps no ambient configuration state.
package agartha
