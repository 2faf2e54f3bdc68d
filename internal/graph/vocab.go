// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package graph

import "github.com/knakk/rdf"

// mustIRI builds an IRI from a vocabulary constant.
func mustIRI(s string) rdf.IRI {
	iri, err := rdf.NewIRI(s)
	if err != nil {
		panic(err)
	}
	return iri
}

var (
	RDFType     = mustIRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	OWLOntology = mustIRI("http://www.w3.org/2002/07/owl#Ontology")
	OWLImports  = mustIRI("http://www.w3.org/2002/07/owl#imports")

	OWLVersionInfo = mustIRI("http://www.w3.org/2002/07/owl#versionInfo")
	OWLVersionIRI  = mustIRI("http://www.w3.org/2002/07/owl#versionIRI")

	RDFSIsDefinedBy = mustIRI("http://www.w3.org/2000/01/rdf-schema#isDefinedBy")
	RDFSSeeAlso     = mustIRI("http://www.w3.org/2000/01/rdf-schema#seeAlso")
	RDFSLabel       = mustIRI("http://www.w3.org/2000/01/rdf-schema#label")

	DCTermsCreated    = mustIRI("http://purl.org/dc/terms/created")
	DCTermsModified   = mustIRI("http://purl.org/dc/terms/modified")
	DCTermsHasVersion = mustIRI("http://purl.org/dc/terms/hasVersion")
	DCTermsTitle      = mustIRI("http://purl.org/dc/terms/title")

	VAEMHasGraphMetadata = mustIRI("http://www.linkedmodel.org/schema/vaem#hasGraphMetadata")
	VAEMRevision         = mustIRI("http://www.linkedmodel.org/schema/vaem#revision")

	SHPrefixes  = mustIRI("http://www.w3.org/ns/shacl#prefixes")
	SHDeclare   = mustIRI("http://www.w3.org/ns/shacl#declare")
	SHPrefix    = mustIRI("http://www.w3.org/ns/shacl#prefix")
	SHNamespace = mustIRI("http://www.w3.org/ns/shacl#namespace")
)

// VersionProperties lists the predicates whose values describe the version of
// an ontology; Extract records the value of each one found on the ontology
// subject or its vaem:hasGraphMetadata node.
var VersionProperties = []rdf.IRI{
	OWLVersionInfo,
	OWLVersionIRI,
	RDFSIsDefinedBy,
	RDFSSeeAlso,
	DCTermsCreated,
	DCTermsModified,
	DCTermsHasVersion,
	RDFSLabel,
	DCTermsTitle,
	VAEMRevision,
}
