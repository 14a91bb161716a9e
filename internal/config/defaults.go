package config

import "time"

// getDefaultConfig retorna uma configuração padrão (constantes de fábrica do carrinho)
func getDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
			Discovery:       true,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  true,
		},
		Vision: VisionConfig{
			Transport:   TransportSerial,
			Address:     "/dev/ttyACM0",
			BaudRate:    115200,
			ReadTimeout: Duration{200 * time.Millisecond},
			Command:     "sRN LINE",
		},
		Control: ControlConfig{
			TargetColumn:         39,
			MaxTurnAngle:         45,
			CycleInterval:        Duration{20 * time.Millisecond},
			LostPolicy:           LostPolicyStopAndSearch,
			LostGraceCycles:      0,
			LostSpeedStep:        1000,
			LostSafeSpeed:        0,
			MaxConsecutiveErrors: 5,
			DiagnosticsEvery:     1,
		},
		PID: PIDConfig{
			Kp:            1.0,
			Ki:            0.5,
			Kd:            0.03,
			IntegralGate:  10,
			IntegralReset: 3,
			IntegralLimit: 5,
			DtEpsilon:     Duration{time.Millisecond},
		},
		Speed: SpeedConfig{
			DeviationMin: 0,
			DeviationMax: 40,
			MaxSpeed:     4095,
			MinSpeed:     4000,
		},
		Steering: SteeringConfig{
			Transport:  TransportSerial,
			Address:    "/dev/ttyUSB0",
			BaudRate:   115200,
			Pin:        4,
			Center:     90,
			Min:        0,
			Max:        180,
			ServoMinUs: 500,
			ServoMaxUs: 2500,
		},
		Drive: DriveConfig{
			PinA:          21,
			PinB:          22,
			ChannelA:      8,
			ChannelB:      9,
			PWMFrequency:  5000,
			PWMResolution: 12,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			Password:    "",
			DB:          0,
			Prefix:      "line_follower",
			Enabled:     true,
			HistorySize: 1000,
			Async:       true,
		},
		PLC: PLCConfig{
			Enabled:      false,
			Host:         "192.168.1.100",
			Rack:         0,
			Slot:         1,
			DBNumber:     20,
			UpdateRate:   Duration{100 * time.Millisecond},
			ReadTimeout:  Duration{5 * time.Second},
			WriteTimeout: Duration{5 * time.Second},
		},
	}
}

// Default retorna a configuração padrão já validável
func Default() *Config {
	cfg := getDefaultConfig()
	return &cfg
}
