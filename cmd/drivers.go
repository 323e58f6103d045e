package cmd

// Backend drivers available to every command.
import (
	_ "github.com/rubiojr/solrpi/pkg/backend/memory"
	_ "github.com/rubiojr/solrpi/pkg/backend/solr"
)
