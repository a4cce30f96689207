package config

type ServerConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

type RedisConfig struct {
	// Empty address disables Redis; push channels and the latest-value
	// cache are skipped.
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type DownsamplingConfig struct {
	MaxPointsPerSeries int  `toml:"max_points_per_series"`
	Enabled            bool `toml:"enabled"`
	MinPointsThreshold int  `toml:"min_points_threshold"`
}

type ProcessingConfig struct {
	GapThresholdSeconds int  `toml:"gap_threshold_seconds"`
	EnableLogging       bool `toml:"enable_logging"`
}

type PerformanceConfig struct {
	MaxBatchSize            int  `toml:"max_batch_size"`
	EnableQueryOptimization bool `toml:"enable_query_optimization"`
}

type ScadaAPIConfig struct {
	Server       ServerConfig       `toml:"server"`
	Redis        RedisConfig        `toml:"redis"`
	Downsampling DownsamplingConfig `toml:"downsampling"`
	Processing   ProcessingConfig   `toml:"processing"`
	Performance  PerformanceConfig  `toml:"performance"`
}

type SensorCollectorConfig struct {
	ScadaAPIHost string `toml:"scada_api_host"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StationGroup string `toml:"station_group"`

	SerialDevice string `toml:"serial_device"`
	Baudrate     uint   `toml:"baudrate"`

	// Optional Modbus-TCP radiation station. Empty IP disables it.
	ModbusStationIp   string `toml:"modbus_station_ip"`
	ModbusStationPort int    `toml:"modbus_station_port"`
	ModbusPollSeconds int    `toml:"modbus_poll_seconds"`
}
