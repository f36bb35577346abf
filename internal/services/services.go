// Package services maps well-known TCP ports to conventional service names.
// The table is static and lookups perform no I/O.
package services

import "sort"

var wellKnown = map[int]string{
	20:    "FTP-DATA",
	21:    "FTP",
	22:    "SSH",
	23:    "TELNET",
	25:    "SMTP",
	53:    "DNS",
	67:    "DHCP",
	69:    "TFTP",
	80:    "HTTP",
	88:    "Kerberos",
	110:   "POP3",
	111:   "RPC",
	119:   "NNTP",
	123:   "NTP",
	135:   "MSRPC",
	137:   "NetBIOS-NS",
	138:   "NetBIOS-DGM",
	139:   "NetBIOS-SSN",
	143:   "IMAP",
	161:   "SNMP",
	162:   "SNMP-Trap",
	179:   "BGP",
	389:   "LDAP",
	443:   "HTTPS",
	445:   "SMB",
	465:   "SMTPS",
	514:   "Syslog",
	515:   "LPD",
	587:   "SMTP-Submission",
	631:   "IPP",
	636:   "LDAPS",
	873:   "Rsync",
	993:   "IMAPS",
	995:   "POP3S",
	1080:  "SOCKS",
	1194:  "OpenVPN",
	1433:  "MSSQL",
	1521:  "Oracle",
	1723:  "PPTP",
	1883:  "MQTT",
	2049:  "NFS",
	2375:  "Docker",
	3000:  "Node.js-Dev",
	3306:  "MySQL",
	3389:  "RDP",
	5000:  "Flask-Dev",
	5432:  "PostgreSQL",
	5672:  "AMQP",
	5900:  "VNC",
	5901:  "VNC-1",
	6379:  "Redis",
	6443:  "Kubernetes-API",
	8000:  "HTTP-Alt",
	8080:  "HTTP-Proxy",
	8443:  "HTTPS-Alt",
	9090:  "Prometheus",
	9200:  "Elasticsearch",
	9300:  "Elasticsearch-Cluster",
	11211: "Memcached",
	27017: "MongoDB",
	27018: "MongoDB-Shard",
}

// Lookup returns the conventional service name for port.
func Lookup(port int) (string, bool) {
	name, ok := wellKnown[port]
	return name, ok
}

// Name returns the service name for port, or nil when the port is not in the
// table. The returned pointer is freshly allocated on every call.
func Name(port int) *string {
	name, ok := wellKnown[port]
	if !ok {
		return nil
	}
	return &name
}

// Ports returns every port with a known service name in ascending order.
func Ports() []int {
	ports := make([]int, 0, len(wellKnown))
	for port := range wellKnown {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}
