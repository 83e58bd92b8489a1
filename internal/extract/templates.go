package extract

import "strings"

// solutionTemplates maps (problem category, system) to the canonical
// resolution steps. The empty system key is the fallback template for
// that category. Placeholders like {reference_user} are filled from
// extracted entities.
var solutionTemplates = map[ProblemCategory]map[string]string{
	CategoryPasswordReset: {
		"SGU":  "1. Acessar o Sistema SGU como administrador\n2. Navegar até Gestão de Usuários\n3. Localizar o usuário solicitante\n4. Resetar senha temporária\n5. Orientar usuário a alterar senha no primeiro acesso\n6. Verificar se email corporativo está correto no cadastro\n7. Testar login com nova senha",
		"Tasy": "1. Acessar módulo de administração do Tasy\n2. Ir em Usuários e Senhas\n3. Selecionar usuário e resetar senha\n4. Gerar senha temporária\n5. Enviar instruções de alteração para o usuário",
		"":     "1. Verificar usuário no sistema de gestão\n2. Resetar senha temporária\n3. Validar email cadastrado\n4. Orientar troca de senha no primeiro acesso",
	},
	CategoryAccess: {
		"SGU":  "1. Acessar SGU como administrador\n2. Ir em Gestão de Usuários > Permissões\n3. Localizar usuário de referência ({reference_user})\n4. Copiar perfil de permissões para o usuário solicitante ({target_user})\n5. Aplicar permissões de alteração cadastral\n6. Validar acessos com o solicitante\n7. Documentar alterações realizadas no chamado",
		"Tasy": "1. Acessar administração do Tasy\n2. Configurar perfil de usuário\n3. Aplicar permissões necessárias\n4. Testar acessos",
		"":     "1. Verificar permissões necessárias\n2. Configurar perfil de usuário\n3. Aplicar acessos solicitados\n4. Validar funcionamento",
	},
	CategoryEmail: {
		"": "1. Verificar email cadastrado no sistema\n2. Atualizar para email corporativo correto\n3. Testar envio de email de recuperação\n4. Validar recebimento com usuário",
	},
	CategoryPermissionCopy: {
		"SGU": "1. Acessar SGU como administrador\n2. Localizar usuário de referência ({reference_user})\n3. Exportar configurações de permissões\n4. Aplicar no usuário solicitante ({target_user})\n5. Testar funcionalidades\n6. Documentar configurações aplicadas",
		"":    "1. Analisar permissões necessárias\n2. Configurar perfil do usuário\n3. Aplicar parametrizações\n4. Validar funcionamento",
	},
	CategoryOutage: {
		"": "1. Verificar status dos serviços do sistema\n2. Checar conectividade de rede\n3. Validar serviços de banco de dados\n4. Reiniciar serviços se necessário\n5. Monitorar estabilidade\n6. Comunicar usuários sobre resolução",
	},
	CategorySlowness: {
		"": "1. Verificar performance do servidor\n2. Analisar uso de recursos (CPU, memória)\n3. Checar conectividade de rede\n4. Revisar logs de sistema\n5. Otimizar consultas se necessário\n6. Monitorar melhorias",
	},
}

// SolutionFor selects the template for the extracted category and
// system and fills entity placeholders. Unmatched categories get a
// generic checklist mentioning the system.
func SolutionFor(category ProblemCategory, system string, entities map[string]string) string {
	var template string
	if bySystem, ok := solutionTemplates[category]; ok {
		if t, ok := bySystem[system]; ok {
			template = t
		} else {
			template = bySystem[""]
		}
	}
	if template == "" {
		template = "1. Analisar problema relatado no sistema " + system +
			"\n2. Verificar configurações e permissões\n3. Aplicar correções necessárias\n4. Testar funcionamento\n5. Validar com usuário solicitante"
	}
	return fillEntities(template, entities)
}

func fillEntities(template string, entities map[string]string) string {
	replacements := []string{
		"{reference_user}", entityOr(entities, "reference_user", "usuário de referência"),
		"{target_user}", entityOr(entities, "target_user", "usuário solicitante"),
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

func entityOr(entities map[string]string, key, fallback string) string {
	if v, ok := entities[key]; ok && v != "" {
		return v
	}
	return fallback
}
