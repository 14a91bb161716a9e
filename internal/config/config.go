package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Políticas de linha perdida
const (
	LostPolicyHoldLast      = "hold_last"
	LostPolicyStopAndSearch = "stop_and_search"
)

// Transportes suportados pelo sensor de visão e pelos atuadores
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
	TransportSim    = "sim"
	TransportLog    = "log"
)

// DefaultPath é o arquivo de configuração lido quando nenhum outro é informado
const DefaultPath = "config.json"

// Config representa a configuração completa da aplicação
type Config struct {
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`
	Vision   VisionConfig   `json:"vision"`
	Control  ControlConfig  `json:"control"`
	PID      PIDConfig      `json:"pid"`
	Speed    SpeedConfig    `json:"speed"`
	Steering SteeringConfig `json:"steering"`
	Drive    DriveConfig    `json:"drive"`
	Redis    RedisConfig    `json:"redis"`
	PLC      PLCConfig      `json:"plc"`
}

// ServerConfig contém configurações do servidor HTTP/WebSocket
type ServerConfig struct {
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout"`
	Discovery       bool     `json:"discovery"`
}

// LogConfig contém configurações de log
type LogConfig struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
	File  bool   `json:"file"`
}

// VisionConfig contém configurações do sensor de visão (Pixy2 via ponte)
type VisionConfig struct {
	Transport   string   `json:"transport"`
	Address     string   `json:"address"` // host:porta (tcp) ou caminho da porta (serial)
	BaudRate    int      `json:"baudRate"`
	ReadTimeout Duration `json:"readTimeout"`
	Command     string   `json:"command"`
}

// ControlConfig contém configurações do loop de controle
type ControlConfig struct {
	TargetColumn         int      `json:"targetColumn"`
	MaxTurnAngle         int      `json:"maxTurnAngle"`
	CycleInterval        Duration `json:"cycleInterval"`
	LostPolicy           string   `json:"lostPolicy"`
	LostGraceCycles      int      `json:"lostGraceCycles"`
	LostSpeedStep        int      `json:"lostSpeedStep"`
	LostSafeSpeed        int      `json:"lostSafeSpeed"`
	MaxConsecutiveErrors int      `json:"maxConsecutiveErrors"`
	DiagnosticsEvery     int      `json:"diagnosticsEvery"`
}

// PIDConfig contém os ganhos e limites do controlador de direção
type PIDConfig struct {
	Kp            float64  `json:"kp"`
	Ki            float64  `json:"ki"`
	Kd            float64  `json:"kd"`
	IntegralGate  int      `json:"integralGate"`
	IntegralReset int      `json:"integralReset"`
	IntegralLimit float64  `json:"integralLimit"`
	DtEpsilon     Duration `json:"dtEpsilon"`
}

// SpeedConfig define o mapeamento desvio -> comando de tração
type SpeedConfig struct {
	DeviationMin int `json:"deviationMin"`
	DeviationMax int `json:"deviationMax"`
	MaxSpeed     int `json:"maxSpeed"`
	MinSpeed     int `json:"minSpeed"`
}

// SteeringConfig contém a faixa de atuação do servo de direção
type SteeringConfig struct {
	Transport  string `json:"transport"`
	Address    string `json:"address"`
	BaudRate   int    `json:"baudRate"`
	Pin        int    `json:"pin"`
	Center     int    `json:"center"`
	Min        int    `json:"min"`
	Max        int    `json:"max"`
	ServoMinUs int    `json:"servoMinUs"`
	ServoMaxUs int    `json:"servoMaxUs"`
}

// DriveConfig contém configurações dos motores de tração
type DriveConfig struct {
	PinA          int `json:"pinA"`
	PinB          int `json:"pinB"`
	ChannelA      int `json:"channelA"`
	ChannelB      int `json:"channelB"`
	PWMFrequency  int `json:"pwmFrequency"`
	PWMResolution int `json:"pwmResolution"`
}

// RedisConfig contém configurações do Redis
type RedisConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	Prefix      string `json:"prefix"`
	Enabled     bool   `json:"enabled"`
	HistorySize int    `json:"historySize"`
	Async       bool   `json:"async"`
}

// PLCConfig contém configurações para espelhar o estado do veículo em um PLC S7
type PLCConfig struct {
	Enabled      bool     `json:"enabled"`
	Host         string   `json:"host"`
	Rack         int      `json:"rack"`
	Slot         int      `json:"slot"`
	DBNumber     int      `json:"dbNumber"`
	UpdateRate   Duration `json:"updateRate"`
	ReadTimeout  Duration `json:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout"`
}

// Duration aceita valores JSON como "20ms" ou número de nanossegundos
type Duration struct {
	time.Duration
}

// MarshalJSON serializa a duração como string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON aceita string ("250ms") ou número (nanossegundos)
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("duração inválida %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("duração inválida: %v", v)
	}
	return nil
}

// Load carrega a configuração do arquivo ou usa valores padrão.
// Um caminho vazio usa DefaultPath; a ausência do arquivo padrão não é erro.
func Load(path string) (*Config, error) {
	config := getDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	// Verificar se existe um arquivo de configuração
	if _, err := os.Stat(path); err == nil {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("erro ao abrir %s: %w", path, err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&config); err != nil {
			return nil, fmt.Errorf("erro ao decodificar %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("arquivo de configuração não encontrado: %w", err)
	}

	// Sobrescrever com variáveis de ambiente, se existirem
	if err := applyEnvironmentOverrides(&config, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejeita combinações de parâmetros que o loop não consegue usar
func (c *Config) Validate() error {
	var problems []string

	if c.Control.CycleInterval.Duration <= 0 {
		problems = append(problems, "control.cycleInterval deve ser positivo")
	}
	switch c.Control.LostPolicy {
	case LostPolicyHoldLast, LostPolicyStopAndSearch:
	default:
		problems = append(problems, fmt.Sprintf("control.lostPolicy desconhecida: %q", c.Control.LostPolicy))
	}
	if c.Control.LostGraceCycles < 0 {
		problems = append(problems, "control.lostGraceCycles não pode ser negativo")
	}
	if c.Control.LostSpeedStep < 0 {
		problems = append(problems, "control.lostSpeedStep não pode ser negativo")
	}
	if c.Control.MaxTurnAngle < 0 {
		problems = append(problems, "control.maxTurnAngle não pode ser negativo")
	}

	if c.PID.IntegralReset > c.PID.IntegralGate {
		problems = append(problems, "pid.integralReset deve ser menor ou igual a pid.integralGate")
	}
	if c.PID.IntegralLimit < 0 {
		problems = append(problems, "pid.integralLimit não pode ser negativo")
	}
	if c.PID.DtEpsilon.Duration <= 0 {
		problems = append(problems, "pid.dtEpsilon deve ser positivo")
	}

	if c.Speed.DeviationMax <= c.Speed.DeviationMin {
		problems = append(problems, "speed.deviationMax deve ser maior que speed.deviationMin")
	}

	if c.Steering.Min > c.Steering.Max {
		problems = append(problems, "steering.min deve ser menor ou igual a steering.max")
	}
	if c.Steering.Center < c.Steering.Min || c.Steering.Center > c.Steering.Max {
		problems = append(problems, "steering.center fora da faixa [min, max]")
	}

	if c.Drive.PWMResolution <= 0 || c.Drive.PWMResolution > 16 {
		problems = append(problems, "drive.pwmResolution deve estar entre 1 e 16 bits")
	}

	switch c.Vision.Transport {
	case TransportTCP, TransportSerial, TransportSim:
	default:
		problems = append(problems, fmt.Sprintf("vision.transport desconhecido: %q", c.Vision.Transport))
	}
	switch c.Steering.Transport {
	case TransportSerial, TransportLog:
	default:
		problems = append(problems, fmt.Sprintf("steering.transport desconhecido: %q", c.Steering.Transport))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuração inválida: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MaxPWM retorna o maior valor de PWM para a resolução configurada
func (d DriveConfig) MaxPWM() int {
	return 1<<d.PWMResolution - 1
}

// RedisAddr retorna o endereço host:porta do Redis
func (r RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// applyEnvironmentOverrides sobrescreve configurações com variáveis de ambiente
func applyEnvironmentOverrides(config *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("variável %s inválida: %w", key, err)
				}
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("variável %s inválida: %w", key, err)
				}
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("variável %s inválida: %w", key, err)
				}
				return
			}
			*dst = b
		}
	}

	num("LF_SERVER_PORT", &config.Server.Port)
	str("LF_LOG_LEVEL", &config.Log.Level)

	str("LF_SENSOR_TRANSPORT", &config.Vision.Transport)
	str("LF_SENSOR_ADDRESS", &config.Vision.Address)

	num("LF_TARGET_COLUMN", &config.Control.TargetColumn)
	str("LF_LOST_POLICY", &config.Control.LostPolicy)
	num("LF_LOST_GRACE_CYCLES", &config.Control.LostGraceCycles)

	float("LF_KP", &config.PID.Kp)
	float("LF_KI", &config.PID.Ki)
	float("LF_KD", &config.PID.Kd)

	str("LF_ACTUATOR_TRANSPORT", &config.Steering.Transport)
	str("LF_ACTUATOR_ADDRESS", &config.Steering.Address)

	str("LF_REDIS_HOST", &config.Redis.Host)
	num("LF_REDIS_PORT", &config.Redis.Port)
	str("LF_REDIS_PASSWORD", &config.Redis.Password)
	boolean("LF_REDIS_ENABLED", &config.Redis.Enabled)

	boolean("LF_PLC_ENABLED", &config.PLC.Enabled)
	str("LF_PLC_HOST", &config.PLC.Host)

	return firstErr
}
