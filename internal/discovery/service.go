package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"linefollower_go/pkg/logger"
)

const (
	// ServiceName é o nome do serviço para descoberta na rede
	ServiceName = "line-follower"

	// ServiceDomain é o domínio para descoberta na rede
	ServiceDomain = "local."

	// ServiceType define o tipo de serviço
	ServiceType = "_linefollower._tcp"

	// Version é anunciada nos metadados mDNS
	Version = "1.0.0"
)

// DiscoveryService gerencia a descoberta do serviço na rede local
type DiscoveryService struct {
	server       *zeroconf.Server
	mutex        sync.Mutex
	instanceName string
	port         int
	runID        string
	running      bool
	serverIP     string
}

// NewDiscoveryService cria um novo serviço de descoberta. runID identifica
// a execução do loop de controle anunciada.
func NewDiscoveryService(port int, runID string) *DiscoveryService {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "carrinho"
	}

	return &DiscoveryService{
		port:         port,
		runID:        runID,
		instanceName: fmt.Sprintf("%s-linefollower", hostname),
	}
}

// txtRecords monta os metadados anunciados junto com o serviço
func (s *DiscoveryService) txtRecords(ip string) []string {
	records := []string{
		"version=" + Version,
		"ip=" + ip,
		"name=Line Follower",
		"ws=/ws",
		"api=/api",
	}
	if s.runID != "" {
		records = append(records, "run="+s.runID)
	}
	return records
}

// Start inicia o serviço de descoberta
func (s *DiscoveryService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	// Obter o endereço IP local
	ip, err := LocalIP()
	if err != nil {
		return fmt.Errorf("erro ao obter IP local: %w", err)
	}
	s.serverIP = ip

	server, err := zeroconf.Register(
		s.instanceName,
		ServiceType,
		ServiceDomain,
		s.port,
		s.txtRecords(ip),
		nil, // todas as interfaces
	)

	if err != nil {
		return fmt.Errorf("erro ao registrar serviço de descoberta: %w", err)
	}

	s.server = server
	s.running = true

	logger.Infof("Serviço de descoberta iniciado em %s:%d (mDNS: %s.%s)",
		ip, s.port, s.instanceName, ServiceType)

	return nil
}

// Stop para o serviço de descoberta
func (s *DiscoveryService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}

	s.running = false

	logger.Info("Serviço de descoberta parado")
}

// GetServerIP retorna o IP do servidor
func (s *DiscoveryService) GetServerIP() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.serverIP
}

// GetPort retorna a porta do servidor
func (s *DiscoveryService) GetPort() int {
	return s.port
}

// LocalIP retorna o primeiro endereço IPv4 que não é loopback
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		// Verificar se é um endereço IP
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("não foi possível determinar o endereço IP local")
}

// GetInstanceName retorna o nome da instância do serviço
func (s *DiscoveryService) GetInstanceName() string {
	return s.instanceName
}

// IsRunning verifica se o serviço está em execução
func (s *DiscoveryService) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}
