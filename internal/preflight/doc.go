// Package preflight provides readiness checks for the external tools and
// filesystem paths imagearchive depends on.
//
// The CLI "imagearchive check" command runs RunAll and renders the results;
// catalog commands do not gate on them, so a failing check is advisory.
package preflight
