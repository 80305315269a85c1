package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDependenciesGo(t *testing.T) {
	src := []byte(`package main

import "fmt"

import (
	"context"
	qdrant "github.com/qdrant/go-client/qdrant"
)
`)

	deps := ExtractDependencies(src, "go")
	assert.Equal(t, []string{"fmt", "context", "github.com/qdrant/go-client/qdrant"}, deps)
}

func TestExtractDependenciesTypeScript(t *testing.T) {
	src := []byte(`import { useState } from 'react';
import 'reflect-metadata';
export { thing } from "./lib/thing";
const fs = require('fs');
`)

	deps := ExtractDependencies(src, "typescript")
	assert.Equal(t, []string{"react", "reflect-metadata", "./lib/thing", "fs"}, deps)
}

func TestExtractDependenciesPython(t *testing.T) {
	src := []byte(`import os, sys
from typing import List
import json
`)

	deps := ExtractDependencies(src, "python")
	assert.Equal(t, []string{"os", "sys", "typing", "json"}, deps)
}

func TestExtractDependenciesRuby(t *testing.T) {
	src := []byte(`require 'json'
require_relative 'helpers/util'
`)

	deps := ExtractDependencies(src, "ruby")
	assert.Equal(t, []string{"json", "helpers/util"}, deps)
}

func TestExtractDependenciesDeduplicates(t *testing.T) {
	src := []byte("import \"fmt\"\nimport \"fmt\"\n")
	assert.Equal(t, []string{"fmt"}, ExtractDependencies(src, "go"))
}

func TestExtractDependenciesUnknownLanguage(t *testing.T) {
	assert.Empty(t, ExtractDependencies([]byte("import x"), "cobol"))
}
