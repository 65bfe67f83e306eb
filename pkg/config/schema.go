package config

// configSchema constrains CUE configuration files. A file is filled into
// config, which is closed by #Config, so misspelt keys are errors.
const configSchema = `
#Identifier: =~"^[A-Za-z_][A-Za-z0-9_]{0,63}$"

#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Config: {
	database?: {
		path?:              string & !=""
		max_open_conns?:    int & >=0
		max_idle_conns?:    int & >=0
		conn_max_lifetime?: #Duration
	}
	tables?: {
		owners?:  #Identifier
		tests?:   #Identifier
		reports?: #Identifier
	}
	owner?: string & !="" & =~"^.{1,256}$"
	importer?: {
		dir?:      string
		watch?:    bool
		debounce?: #Duration
	}
	telemetry?: {...}
}

config: #Config
`
